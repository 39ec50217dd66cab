// Copyright 2025.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package domain

import "time"

// SessionState is the lifecycle state of an alias in the session registry.
type SessionState string

const (
	StateDisconnected SessionState = "disconnected"
	StateConnecting   SessionState = "connecting"
	StateConnected    SessionState = "connected"
)

// Session is a read-only snapshot of a live session for display purposes.
type Session struct {
	Alias       string
	State       SessionState
	ConnectedAt time.Time
}

// SessionEvent is emitted by the registry after every mutating operation.
type SessionEvent struct {
	Alias string
	State SessionState
}

// BroadcastResult reports the per-target outcome of one broadcast send.
type BroadcastResult struct {
	Alias string
	Err   error
}
