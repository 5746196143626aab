package config

type Feature int

const (
	// FeatPrintPop pops the printed expression's value after the print_int
	// call. Off by default: the stock code generator leaves the value on the
	// stack.
	FeatPrintPop Feature = iota
	FeatCount
)

type Warning int

const (
	WarnShadow Warning = iota
	WarnNoExit
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Features   map[Feature]Info
	Warnings   map[Warning]Info
	FeatureMap map[string]Feature
	WarningMap map[string]Warning

	// Compile limits.
	MaxStringLen    int // string literal byte bound, checked at scan time
	PrintBufferSize int // runtime .bss print buffer, bytes
	ArenaSize       int // AST bump region, bytes

	OutputPath    string
	BackendName   string
	BackendTarget string // QBE target ABI, used by the qbe backend only
}

const (
	DefaultMaxStringLen    = 255
	DefaultPrintBufferSize = 1024
	DefaultArenaSize       = 4 * 1024 * 1024
	DefaultOutputPath      = "_test/test.asm"
)

func NewConfig() *Config {
	cfg := &Config{
		Features:   make(map[Feature]Info),
		Warnings:   make(map[Warning]Info),
		FeatureMap: make(map[string]Feature),
		WarningMap: make(map[string]Warning),

		MaxStringLen:    DefaultMaxStringLen,
		PrintBufferSize: DefaultPrintBufferSize,
		ArenaSize:       DefaultArenaSize,
		OutputPath:      DefaultOutputPath,
		BackendName:     "nasm",
		BackendTarget:   "amd64_sysv",
	}

	features := map[Feature]Info{
		FeatPrintPop: {"print-pop", false, "Pop the value left on the stack by 'print' of an expression."},
	}

	warnings := map[Warning]Info{
		WarnShadow: {"shadow", false, "Warn when a 'let' shadows a binding from an enclosing scope."},
		WarnNoExit: {"no-exit", false, "Warn when the program does not end with an 'exit' statement."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }
