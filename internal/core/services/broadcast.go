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

package services

import (
	"go.uber.org/zap"

	"github.com/sshdeck/sshdeck/internal/core/domain"
)

// Broadcaster fans one command line out to several live terminals.
// Delivery is fire-and-forget; there is no queue and no acknowledgement.
type Broadcaster struct {
	logger   *zap.SugaredLogger
	registry *Registry
}

func NewBroadcaster(logger *zap.SugaredLogger, registry *Registry) *Broadcaster {
	return &Broadcaster{logger: logger, registry: registry}
}

// Targets lists the sessions eligible to receive a broadcast: connected
// ones only.
func (b *Broadcaster) Targets() []domain.Session {
	sessions := b.registry.Sessions()
	targets := sessions[:0]
	for _, s := range sessions {
		if s.State == domain.StateConnected {
			targets = append(targets, s)
		}
	}
	return targets
}

// Send types the command plus a submit into each target's terminal. A
// target without a usable terminal fails alone; the rest still receive
// the command.
func (b *Broadcaster) Send(command string, aliases []string) []domain.BroadcastResult {
	results := make([]domain.BroadcastResult, 0, len(aliases))
	for _, alias := range aliases {
		terminal, err := b.registry.Terminal(alias)
		if err != nil {
			b.logger.Warnw("broadcast target unavailable", "alias", alias, "error", err)
			results = append(results, domain.BroadcastResult{Alias: alias, Err: &domain.TargetUnavailableError{Alias: alias}})
			continue
		}
		if err := terminal.Send(command); err != nil {
			b.logger.Warnw("broadcast delivery failed", "alias", alias, "error", err)
			results = append(results, domain.BroadcastResult{Alias: alias, Err: &domain.TargetUnavailableError{Alias: alias}})
			continue
		}
		results = append(results, domain.BroadcastResult{Alias: alias})
	}
	b.logger.Infow("broadcast sent", "targets", len(aliases))
	return results
}
