package config

const (
	delimiter = "_"

	EnvPrefix = "PROXY"

	EnvLogPrefix      = EnvPrefix + delimiter + "LOG"
	EnvLogLevel       = EnvLogPrefix + delimiter + "LEVEL"
	EnvLogDevelopment = EnvLogPrefix + delimiter + "DEVELOPMENT"

	EnvRegistryPrefix = EnvPrefix + delimiter + "REGISTRY"
	EnvRegistryStore  = EnvRegistryPrefix + delimiter + "STORE"
)
