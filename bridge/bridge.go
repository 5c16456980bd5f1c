// Package bridge is the embedding bridge between the mod and the host
// game: work marshalled onto the host's game thread, keep-awake requests
// deciding whether the host may sleep, named command channels in both
// directions, and a registry of named shared objects.
package bridge

import "go.uber.org/zap"

// Bridge bundles the process-wide embedding facilities.
type Bridge struct {
	GameThread *GameThread
	KeepAwake  *KeepAwake
	Commands   *Commands
	Objects    *NamedObjects
}

func New(queueLimit int, log *zap.Logger) *Bridge {
	return &Bridge{
		GameThread: NewGameThread(queueLimit, log),
		KeepAwake:  NewKeepAwake(log),
		Commands:   NewCommands(log),
		Objects:    NewNamedObjects(),
	}
}
