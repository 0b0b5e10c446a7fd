package config

// ConfigBuilder assembles a Config in code, starting from Defaults.
type ConfigBuilder struct {
	cfg Config
}

// NewConfigBuilder creates a builder seeded with the package defaults
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{cfg: Defaults}
}

func (b *ConfigBuilder) WithDBPath(path string) *ConfigBuilder {
	b.cfg.DB.DBPath = path
	return b
}

func (b *ConfigBuilder) WithDBFile(file string) *ConfigBuilder {
	b.cfg.DB.DBFile = file
	return b
}

func (b *ConfigBuilder) WithBucket(bucket string) *ConfigBuilder {
	b.cfg.DB.Bucket = bucket
	return b
}

func (b *ConfigBuilder) WithMaxHistory(n int) *ConfigBuilder {
	b.cfg.DB.MaxHistory = n
	return b
}

func (b *ConfigBuilder) WithCatalogURL(url string) *ConfigBuilder {
	b.cfg.Catalog.URL = url
	return b
}

func (b *ConfigBuilder) WithCatalogFile(path string) *ConfigBuilder {
	b.cfg.Catalog.File = path
	return b
}

func (b *ConfigBuilder) WithVMDir(dir string) *ConfigBuilder {
	b.cfg.Download.Dir = dir
	return b
}

func (b *ConfigBuilder) WithRAM(ram uint64) *ConfigBuilder {
	b.cfg.Download.RAM = ram
	return b
}

func (b *ConfigBuilder) WithHTTPAddr(addr string) *ConfigBuilder {
	b.cfg.HTTP.Addr = addr
	return b
}

// Build validates and returns the assembled configuration
func (b *ConfigBuilder) Build() (*Config, error) {
	cfg := b.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
