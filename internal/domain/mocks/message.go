// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"sync"

	"github.com/stretchr/testify/mock"
)

// MockMessage is a NATS query as the attendance handler sees it. Subject and
// body are fixed; every reply is kept for inspection.
type MockMessage struct {
	mock.Mock
	data    []byte
	subject string

	mu      sync.Mutex
	replies [][]byte
}

// NewMockMessage creates a query on subject carrying data.
func NewMockMessage(data []byte, subject string) *MockMessage {
	return &MockMessage{
		data:    data,
		subject: subject,
	}
}

// NewMockRequest creates a query that expects a reply and accepts it.
func NewMockRequest(data []byte, subject string) *MockMessage {
	msg := NewMockMessage(data, subject)
	msg.On("HasReply").Return(true)
	msg.On("Respond", mock.Anything).Return(nil)
	return msg
}

func (m *MockMessage) Subject() string {
	return m.subject
}

func (m *MockMessage) Data() []byte {
	return m.data
}

func (m *MockMessage) HasReply() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockMessage) Respond(data []byte) error {
	args := m.Called(data)
	if err := args.Error(0); err != nil {
		return err
	}
	m.mu.Lock()
	m.replies = append(m.replies, data)
	m.mu.Unlock()
	return nil
}

// LastReply returns the most recent accepted reply, or nil.
func (m *MockMessage) LastReply() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.replies) == 0 {
		return nil
	}
	return m.replies[len(m.replies)-1]
}
