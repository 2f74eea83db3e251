package transform

// Config is the transform section of the service configuration. It is
// passed to the factory once; nothing in the pipeline reads configuration
// from globals.
type Config struct {
	// Enabled lists the format keys renditions are produced for.
	Enabled []string `mapstructure:"enabled" yaml:"enabled" default:"[\"webp\"]"`
	// ForceOverwrite lists format keys whose renditions are always rewritten.
	ForceOverwrite []string `mapstructure:"force_overwrite" yaml:"force_overwrite"`
	// ThumbSizes are the thumbnail widths batch conversion produces when none
	// are given on the command line.
	ThumbSizes []int `mapstructure:"thumb_sizes" yaml:"thumb_sizes" validate:"dive,gt=0"`
	// TempDir holds scoped temp files; empty means the OS temp dir.
	TempDir string `mapstructure:"temp_dir" yaml:"temp_dir"`

	ConvertOnUpload    bool `mapstructure:"convert_on_upload" yaml:"convert_on_upload" default:"true"`
	ConvertOnTransform bool `mapstructure:"convert_on_transform" yaml:"convert_on_transform" default:"true"`
	ResponsiveImages   bool `mapstructure:"responsive_images" yaml:"responsive_images" default:"true"`
	ResponsiveJobs     bool `mapstructure:"responsive_jobs" yaml:"responsive_jobs" default:"true"`
	ConvertInQueue     bool `mapstructure:"convert_in_queue" yaml:"convert_in_queue" default:"true"`
}
