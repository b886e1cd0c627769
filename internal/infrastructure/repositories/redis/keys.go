package redis

import "cinesync/internal/core/domain"

// Key layout shared with every instance. Do not change without migrating.
func historyKey(id domain.RoomID) string      { return "chat:history:" + id.String() }
func participantsKey(id domain.RoomID) string { return "room:participants:" + id.String() }
func streamKey(id domain.RoomID) string       { return "stream:" + id.String() }
