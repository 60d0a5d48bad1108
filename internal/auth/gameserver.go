// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aetherforge Contributors

package auth

import (
	"crypto/ed25519"

	"github.com/aetherforge/accounts/internal/gameserver"
)

// VerifyGameServer confirms a game-server group under the shared admin
// secret and returns its group id. A wrong secret yields
// gameserver.ErrUnauthorized regardless of the group key supplied.
func (e *Engine) VerifyGameServer(groupKey ed25519.PublicKey, adminPassword string) (gameserver.GroupID, error) {
	if err := e.admin.VerifyAction(adminPassword); err != nil {
		return gameserver.GroupID{}, err
	}
	id, err := gameserver.GroupIDFromPublicKey(groupKey)
	if err != nil {
		return gameserver.GroupID{}, err
	}

	e.logger.Info("game server group verified", "group_id", id.String())
	return id, nil
}
