package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvFiles are the dotenv files loaded from the migration file directory, in order.
// Variables already set in the environment take precedence.
var EnvFiles = []string{".env.local", ".env"}

// Load reads a migration file. YAML, JSON and TOML files are supported.
//
// Dotenv files next to the migration file are loaded first, then every ${VAR} reference in
// the credentials is expanded from the environment. The result is validated before it is
// returned.
func Load(path string) (*File, error) {
	if err := loadDotEnv(filepath.Dir(path)); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read migration file %s: %w", path, err)
	}

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("failed to decode migration file %s: %w", path, err)
	}
	f.expandEnv()

	if err := Validate(&f); err != nil {
		return nil, fmt.Errorf("invalid migration file %s: %w", path, err)
	}
	return &f, nil
}

func loadDotEnv(dir string) error {
	var files []string
	for _, name := range EnvFiles {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		switch {
		case err == nil && info.IsDir():
			continue
		case errors.Is(err, os.ErrNotExist):
			continue
		case err != nil:
			return fmt.Errorf("cannot check env file %s: %w", path, err)
		}
		files = append(files, path)
	}
	if len(files) == 0 {
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("cannot load env files: %w", err)
	}
	return nil
}

func (f *File) expandEnv() {
	for _, s := range []*string{
		&f.Source.APIKey,
		&f.Source.BaseID,
		&f.Source.BaseURL,
		&f.Target.APIKey,
		&f.Target.WorkspaceID,
		&f.Target.BaseURL,
		&f.Target.DSN,
	} {
		*s = os.ExpandEnv(*s)
	}
}

// Validate checks a migration file against its validation rules.
func Validate(f *File) error {
	validate := validator.New()

	// Use the file key names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	err := validate.Struct(f)
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	msgs := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		field := strings.TrimPrefix(e.Namespace(), "File.")
		if e.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %q (%s)", field, e.Tag(), e.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s: failed %q", field, e.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}
