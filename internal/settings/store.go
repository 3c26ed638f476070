package settings

import (
	"os"

	"github.com/spf13/viper"
)

// Keys persisted across restarts. Absent values read as "" / false.
const (
	KeyMainEvent       = "main_event"
	KeyBib             = "bib"
	KeyBirthYear       = "birth_year"
	KeyCode            = "code"
	KeyIsTracking      = "is_tracking"
	KeyTrackingPending = "is_tracking_pending"
	KeyFirstName       = "participant_first_name"
	KeyLastName        = "participant_last_name"
	KeyEventName       = "event_name"
	KeyTrackData       = "track_data"
)

// Store is a durable key-value settings file. Writes flush to disk
// immediately. Callers follow a single-writer discipline, so there is no
// locking here.
type Store struct {
	v    *viper.Viper
	path string
}

func Open(path string) (*Store, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, err
			}
		}
	}
	return &Store{v: v, path: path}, nil
}

func (s *Store) Get(key string) string {
	return s.v.GetString(key)
}

func (s *Store) GetBool(key string) bool {
	return s.v.GetBool(key)
}

func (s *Store) Set(key, value string) error {
	s.v.Set(key, value)
	return s.flush()
}

func (s *Store) SetBool(key string, value bool) error {
	s.v.Set(key, value)
	return s.flush()
}

// Clear resets keys to their absent defaults.
func (s *Store) Clear(keys ...string) error {
	for _, key := range keys {
		s.v.Set(key, "")
	}
	return s.flush()
}

func (s *Store) flush() error {
	return s.v.WriteConfigAs(s.path)
}
