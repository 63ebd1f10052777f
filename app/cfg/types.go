package cfg

type Cfg struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Application configuration
	Port              string
	RulesFile         string
	SchedulerInterval int
	FetchTimeout      int
	FetchLimit        int
	KeepAliveInterval int
	APIAccessKey      string

	// Channel source configuration
	ChannelAPIBase string
	ChannelToken   string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
