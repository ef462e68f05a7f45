// Package config provides configuration management for sitepipe using Viper
// for flexible loading from files, environment variables, and command-line
// flags.
//
// The configuration system supports YAML files (.sitepipe.yml), environment
// variable overrides with the SITEPIPE_ prefix, and validation. Defaults
// reproduce the fixed layout of a classic app/dist/deploy static site: Sass
// entries under app/styles/sass, page templates under app/markup, and an
// FTP target for the deploy tree.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Paths  PathsConfig  `mapstructure:"paths" yaml:"paths"`
	Style  StyleConfig  `mapstructure:"style" yaml:"style"`
	Markup MarkupConfig `mapstructure:"markup" yaml:"markup"`
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Watch  WatchConfig  `mapstructure:"watch" yaml:"watch"`
	Dist   DistConfig   `mapstructure:"dist" yaml:"dist"`
	Deploy DeployConfig `mapstructure:"deploy" yaml:"deploy"`
	Upload UploadConfig `mapstructure:"upload" yaml:"upload"`
	Notify NotifyConfig `mapstructure:"notify" yaml:"notify"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

// PathsConfig names the three trees the pipeline works on. Every glob in the
// other sections is relative to the project root, not to these directories.
type PathsConfig struct {
	App    string `mapstructure:"app" yaml:"app"`
	Dist   string `mapstructure:"dist" yaml:"dist"`
	Deploy string `mapstructure:"deploy" yaml:"deploy"`
}

type StyleConfig struct {
	Entries      []string `mapstructure:"entries" yaml:"entries"`
	OutputDir    string   `mapstructure:"output_dir" yaml:"output_dir"`
	IncludePaths []string `mapstructure:"include_paths" yaml:"include_paths"`
	// SassBinary is the dart-sass executable speaking the embedded protocol.
	SassBinary string `mapstructure:"sass_binary" yaml:"sass_binary"`
	// Targets are esbuild engine targets used for vendor prefixing,
	// e.g. "chrome58", "safari11", "ie11".
	Targets   []string      `mapstructure:"targets" yaml:"targets"`
	SourceMap bool          `mapstructure:"source_map" yaml:"source_map"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type MarkupConfig struct {
	Pages        string `mapstructure:"pages" yaml:"pages"`
	PagesDir     string `mapstructure:"pages_dir" yaml:"pages_dir"`
	TemplatesDir string `mapstructure:"templates_dir" yaml:"templates_dir"`
	DataFile     string `mapstructure:"data_file" yaml:"data_file"`
	OutputDir    string `mapstructure:"output_dir" yaml:"output_dir"`
	Lint         bool   `mapstructure:"lint" yaml:"lint"`
}

type ServerConfig struct {
	Port    int    `mapstructure:"port" yaml:"port"`
	Host    string `mapstructure:"host" yaml:"host"`
	Open    bool   `mapstructure:"open" yaml:"open"`
	Browser string `mapstructure:"browser" yaml:"browser"`
}

type WatchConfig struct {
	Style    []string      `mapstructure:"style" yaml:"style"`
	Markup   []string      `mapstructure:"markup" yaml:"markup"`
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// Replacement is a literal string substitution applied to files whose base
// name matches Files.
type Replacement struct {
	Files string `mapstructure:"files" yaml:"files"`
	Old   string `mapstructure:"old" yaml:"old"`
	New   string `mapstructure:"new" yaml:"new"`
}

type DistConfig struct {
	Sources []string      `mapstructure:"sources" yaml:"sources"`
	Exclude []string      `mapstructure:"exclude" yaml:"exclude"`
	Replace []Replacement `mapstructure:"replace" yaml:"replace"`
}

type DeployConfig struct {
	Sources              []string      `mapstructure:"sources" yaml:"sources"`
	Exclude              []string      `mapstructure:"exclude" yaml:"exclude"`
	Replace              []Replacement `mapstructure:"replace" yaml:"replace"`
	AnalyticsPlaceholder string        `mapstructure:"analytics_placeholder" yaml:"analytics_placeholder"`
	AnalyticsID          string        `mapstructure:"analytics_id" yaml:"analytics_id"`
	UseRef               bool          `mapstructure:"useref" yaml:"useref"`
	Minify               bool          `mapstructure:"minify" yaml:"minify"`
	// CSSTarget is the esbuild engine target for minified CSS ("ie9").
	CSSTarget string `mapstructure:"css_target" yaml:"css_target"`
}

// UploadConfig is the explicit FTP deployment record handed to the uploader.
type UploadConfig struct {
	Source     string        `mapstructure:"source" yaml:"source"`
	Host       string        `mapstructure:"host" yaml:"host"`
	Port       int           `mapstructure:"port" yaml:"port"`
	User       string        `mapstructure:"user" yaml:"user"`
	Password   string        `mapstructure:"password" yaml:"-" json:"-"`
	RemotePath string        `mapstructure:"remote_path" yaml:"remote_path"`
	Parallel   int           `mapstructure:"parallel" yaml:"parallel"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Addr returns host:port for dialing.
func (u UploadConfig) Addr() string {
	return fmt.Sprintf("%s:%d", u.Host, u.Port)
}

type NotifyConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// SetDefaults registers the default value of every key on v. Registering the
// keys also lets AutomaticEnv resolve SITEPIPE_* overrides for nested keys.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("paths.app", "app")
	v.SetDefault("paths.dist", "dist")
	v.SetDefault("paths.deploy", "deploy")

	v.SetDefault("style.entries", []string{
		"app/styles/sass/main_light.scss",
		"app/styles/sass/main_dark.scss",
	})
	v.SetDefault("style.output_dir", "app/styles/css")
	v.SetDefault("style.include_paths", []string{"app/styles/sass"})
	v.SetDefault("style.sass_binary", "sass")
	v.SetDefault("style.targets", []string{"chrome58", "edge16", "firefox57", "safari11", "ios10"})
	v.SetDefault("style.source_map", true)
	v.SetDefault("style.timeout", 30*time.Second)

	v.SetDefault("markup.pages", "app/markup/pages/**/*.{html,nunjucks}")
	v.SetDefault("markup.pages_dir", "app/markup/pages")
	v.SetDefault("markup.templates_dir", "app/markup/templates")
	v.SetDefault("markup.data_file", "app/markup/data.json")
	v.SetDefault("markup.output_dir", "app")
	v.SetDefault("markup.lint", true)

	v.SetDefault("server.port", 3000)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.open", true)
	v.SetDefault("server.browser", "firefox")

	v.SetDefault("watch.style", []string{"app/styles/sass/**/*.scss"})
	v.SetDefault("watch.markup", []string{"app/markup/**/*.{html,nunjucks,json}"})
	v.SetDefault("watch.debounce", 100*time.Millisecond)

	v.SetDefault("dist.sources", []string{"app/**/*"})
	v.SetDefault("dist.exclude", []string{
		"app/{markup,markup/**}",
		"app/images/{demo,demo/**}",
	})
	v.SetDefault("dist.replace", []Replacement{
		{Files: "*.html", Old: "images/demo/", New: "images/dist/"},
	})

	v.SetDefault("deploy.sources", []string{"app/**/*"})
	v.SetDefault("deploy.exclude", []string{
		"app/{markup,markup/**}",
		"app/images/{demo,demo/**}",
		"app/styles/{sass,sass/**}",
	})
	v.SetDefault("deploy.replace", []Replacement{
		{Files: "*.html", Old: "images/demo/", New: "images/dist/"},
	})
	v.SetDefault("deploy.analytics_placeholder", "UA-XXXXX-X")
	v.SetDefault("deploy.analytics_id", "UA-52380361-10")
	v.SetDefault("deploy.useref", true)
	v.SetDefault("deploy.minify", true)
	v.SetDefault("deploy.css_target", "ie9")

	v.SetDefault("upload.source", "deploy")
	v.SetDefault("upload.host", "domain.com")
	v.SetDefault("upload.port", 21)
	v.SetDefault("upload.user", "username")
	v.SetDefault("upload.password", "")
	v.SetDefault("upload.remote_path", "/public_html/html.themeshash.com/project")
	v.SetDefault("upload.parallel", 10)
	v.SetDefault("upload.timeout", 30*time.Second)

	v.SetDefault("notify.enabled", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load builds a Config from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom builds a Config from v, applying defaults for unset keys and
// validating the result.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}

	// log-level is bound to a root persistent flag outside the log section.
	if v.IsSet("log-level") {
		config.Log.Level = v.GetString("log-level")
	}

	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns the configuration produced with no file, env or flags.
func Default() *Config {
	cfg, err := LoadFrom(viper.New())
	if err != nil {
		// defaults are static and always validate
		panic(err)
	}
	return cfg
}
