package sunspec_modbus

import (
	"sync"
)

// Session serializes access to one reader and opens it on demand. After a
// failed call the connection is closed and reopened by the next call.
type Session struct {
	mu     sync.Mutex
	reader InverterModbusReader
	opened bool
}

func NewSession(reader InverterModbusReader) *Session {
	return &Session{reader: reader}
}

func (s *Session) Do(fn func(InverterModbusReader) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		if err := s.reader.Open(); err != nil {
			return err
		}
		if err := s.reader.Validate(); err != nil {
			s.reader.Close()
			return err
		}
		s.opened = true
	}
	if err := fn(s.reader); err != nil {
		s.reader.Close()
		s.opened = false
		return err
	}
	return nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return nil
	}
	s.opened = false
	return s.reader.Close()
}
