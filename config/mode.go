package config

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
	EnvTest        = "test"
)

func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

func (c *Config) UsesPostgres() bool {
	return c.Store != nil && c.Store.Driver == "postgres"
}

func (c *Config) UsesRedis() bool {
	return c.Redis != nil && c.Redis.URL != ""
}

func (c *Config) UsesRabbitMQ() bool {
	return c.RabbitMQ != nil && c.RabbitMQ.URL != ""
}
