package config

import (
	"fmt"
)

type StoreKeyStruct struct{}

func NewStoreKeyStruct() *StoreKeyStruct {
	return &StoreKeyStruct{}
}

// SessionStartKey returns the key holding the session start time (unix millis)
func (r *StoreKeyStruct) SessionStartKey(testID string) string {
	return fmt.Sprintf("assessment:%s:start_time", testID)
}

// TabSwitchesKey returns the key holding the violation count
func (r *StoreKeyStruct) TabSwitchesKey(testID string) string {
	return fmt.Sprintf("assessment:%s:tab_switches", testID)
}

// RegistrationKey returns the key holding the JSON registration record
func (r *StoreKeyStruct) RegistrationKey(testID string) string {
	return fmt.Sprintf("assessment:%s:registration", testID)
}

// SessionKeys returns every key persisted for a test, in a fixed order.
func (r *StoreKeyStruct) SessionKeys(testID string) []string {
	return []string{
		r.SessionStartKey(testID),
		r.TabSwitchesKey(testID),
		r.RegistrationKey(testID),
	}
}

var StoreKey = NewStoreKeyStruct()
