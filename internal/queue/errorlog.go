package queue

import (
	"encoding/json"
	"fmt"

	"abstractor/internal/errclass"
)

// DecodeErrorLog returns the ordered error records for the search. An empty
// column decodes to an empty log.
func (s *Search) DecodeErrorLog() ([]errclass.Record, error) {
	if s.ErrorLogJSON == "" {
		return nil, nil
	}
	var log []errclass.Record
	if err := json.Unmarshal([]byte(s.ErrorLogJSON), &log); err != nil {
		return nil, fmt.Errorf("decode error log: %w", err)
	}
	return log, nil
}

// AppendErrorRecord appends one record to the error log. The log is
// append-only: existing entries are never rewritten or truncated.
func (s *Search) AppendErrorRecord(rec errclass.Record) error {
	log, err := s.DecodeErrorLog()
	if err != nil {
		return err
	}
	log = append(log, rec)
	encoded, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("encode error log: %w", err)
	}
	s.ErrorLogJSON = string(encoded)
	return nil
}

// ConsecutiveSameCategory returns the same-category streak length at the tail
// of the log, including the candidate category about to be appended.
func (s *Search) ConsecutiveSameCategory(category errclass.Category) (int, error) {
	log, err := s.DecodeErrorLog()
	if err != nil {
		return 0, err
	}
	streak := 1
	for i := len(log) - 1; i >= 0; i-- {
		if log[i].Category != category {
			break
		}
		streak++
	}
	return streak, nil
}
