package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/creasty/defaults"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/leeforge/thumbnail/env_mode"
	"github.com/leeforge/thumbnail/utils"
)

type Validator interface {
	Validate() error
}

type ConfigOptions struct {
	BasePath  string
	FileName  string
	FileType  string
	EnvPrefix string
	// AllowMissing starts from defaults when no config file exists.
	AllowMissing bool
	WatchAble    bool
	OnChange     func(e fsnotify.Event)
}

func DefaultConfigOptions() ConfigOptions {
	basePath := os.Getenv("CONFIG_PATH")
	if basePath == "" {
		basePath = "config"
	}

	return ConfigOptions{
		BasePath:     basePath,
		FileName:     "config",
		FileType:     "yaml",
		EnvPrefix:    "THUMB",
		AllowMissing: true,
	}
}

// Loader reads layered config files and environment overrides into structs.
type Loader struct {
	instance  *viper.Viper
	opts      ConfigOptions
	files     []string
	watchOnce sync.Once
}

func NewLoader(optsArr ...ConfigOptions) (*Loader, error) {
	opts := DefaultConfigOptions()
	if len(optsArr) > 0 {
		opts = optsArr[0]
	}

	instance, files, err := CreateConfig(opts)
	if err != nil {
		return nil, err
	}
	return &Loader{instance: instance, opts: opts, files: files}, nil
}

// Files lists the config files that were merged, lowest priority first.
func (l *Loader) Files() []string {
	return l.files
}

// Bind fills instance with defaults, then file values, then environment
// overrides, applies defaults again for keys left empty and validates.
func (l *Loader) Bind(instance any) error {
	if l == nil || l.instance == nil {
		return fmt.Errorf("config loader is nil")
	}
	if instance == nil {
		return fmt.Errorf("target instance is nil")
	}

	if err := defaults.Set(instance); err != nil {
		return fmt.Errorf("failed to set defaults: %w", err)
	}

	for _, key := range structKeys(reflect.TypeOf(instance), "") {
		if err := l.instance.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if err := l.instance.Unmarshal(instance); err != nil {
		return fmt.Errorf("failed to unmarshal config (path: %s, file: %s.%s): %w",
			l.opts.BasePath, l.opts.FileName, l.opts.FileType, err)
	}

	if err := defaults.Set(instance); err != nil {
		return fmt.Errorf("failed to set defaults after unmarshal: %w", err)
	}

	if v, ok := instance.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}

// Watch reports file changes to OnChange. The bound structs are not
// refreshed; a running service keeps the snapshot it started with.
func (l *Loader) Watch() {
	if !l.opts.WatchAble || len(l.files) == 0 {
		return
	}
	l.watchOnce.Do(func() {
		w := viper.New()
		w.SetConfigFile(l.files[len(l.files)-1])
		w.OnConfigChange(func(e fsnotify.Event) {
			if l.opts.OnChange != nil {
				l.opts.OnChange(e)
			}
		})
		w.WatchConfig()
	})
}

func (l *Loader) Get(key string) any {
	return l.instance.Get(key)
}

func (l *Loader) Set(key string, value any) {
	l.instance.Set(key, value)
}

// CreateConfig merges the config files found for the current env mode and
// returns the viper instance with env lookups configured.
func CreateConfig(opts ConfigOptions) (*viper.Viper, []string, error) {
	configPaths := getConfigFilePaths(opts)
	if len(configPaths) == 0 && !opts.AllowMissing {
		return nil, nil, fmt.Errorf("no valid configuration files found in path: %s", opts.BasePath)
	}

	v := viper.New()
	v.SetConfigType(opts.FileType)

	for _, configPath := range configPaths {
		tempV := viper.New()
		tempV.SetConfigFile(configPath)
		if err := tempV.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("error reading config file %s: %w", configPath, err)
		}

		for _, key := range tempV.AllKeys() {
			v.Set(key, tempV.Get(key))
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	if opts.EnvPrefix != "" {
		v.SetEnvPrefix(opts.EnvPrefix)
	}
	v.AutomaticEnv()

	applyEnvOverrides(v, opts.EnvPrefix)

	return v, configPaths, nil
}

// applyEnvOverrides gives environment variables priority over file values
// for every key present in the files.
func applyEnvOverrides(v *viper.Viper, envPrefix string) {
	for _, key := range v.AllKeys() {
		if envValue, ok := os.LookupEnv(EnvName(envPrefix, key)); ok && envValue != "" {
			v.Set(key, envValue)
		}
	}
}

// EnvName returns the environment variable consulted for key:
// images.cache.age -> THUMB_IMAGES_CACHE_AGE.
func EnvName(prefix, key string) string {
	name := strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
	if prefix != "" {
		name = strings.ToUpper(prefix) + "_" + name
	}
	return name
}

func getConfigFilePaths(opts ConfigOptions) (configFiles []string) {
	env := env_mode.Mode()
	fileNames := []string{
		opts.FileName,
		fmt.Sprintf("%s.local", opts.FileName),
		fmt.Sprintf("%s.%s", opts.FileName, env),
		fmt.Sprintf("%s.%s.local", opts.FileName, env),
	}

	for _, fileName := range fileNames {
		file := filepath.Join(opts.BasePath, fmt.Sprintf("%s.%s", fileName, opts.FileType))
		if isDir, exists, _ := utils.Exists(file); exists && !isDir {
			configFiles = append(configFiles, file)
		}
	}
	return configFiles
}

// structKeys lists the dotted mapstructure keys of the leaf fields of t.
func structKeys(t reflect.Type, prefix string) []string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	var keys []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		tag := field.Tag.Get("mapstructure")
		name, opts, _ := strings.Cut(tag, ",")
		if name == "-" {
			continue
		}

		ft := field.Type
		for ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}

		if strings.Contains(opts, "squash") {
			keys = append(keys, structKeys(ft, prefix)...)
			continue
		}
		if name == "" {
			name = strings.ToLower(field.Name)
		}

		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		if ft.Kind() == reflect.Struct && ft.PkgPath() != "time" {
			keys = append(keys, structKeys(ft, key)...)
			continue
		}
		keys = append(keys, key)
	}
	return keys
}
