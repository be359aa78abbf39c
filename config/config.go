package config

import (
	"go.uber.org/zap"
)

// Config bundles the cross-cutting concerns handed to every component.
type Config struct {
	Logger      *zap.SugaredLogger
	Environment *Environment
}
