package config

// AppConfig is everything the session server reads at startup.
type AppConfig struct {
	Server  ServerConfig
	Session SessionConfig
	Log     LogConfig
}

func LoadApp() (AppConfig, error) {
	logCfg, err := LoadLog()
	if err != nil {
		return AppConfig{}, err
	}
	serverCfg, err := LoadServer()
	if err != nil {
		return AppConfig{}, err
	}
	sessionCfg, err := LoadSession()
	if err != nil {
		return AppConfig{}, err
	}
	return AppConfig{
		Server:  serverCfg,
		Session: sessionCfg,
		Log:     logCfg,
	}, nil
}
