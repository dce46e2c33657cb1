package conf

/*
   This package wraps viper, a package designed to handle config files, for the
   canload app. Local environments keep their settings in an env-format file;
   deployed environments only use environment variables. The package looks at
   the config file first and falls back to the environment for any variable it
   is not tracking.

   Assumptions:
   1. The configuration file is a env file
   2. The configuration file, once it is made available to the application,
   will stay immutable during the uptime of the application (exception is test)
*/

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

// An instance of the viper struct containing the conf information. Only made
// accessible through public functions GetEnv, SetEnv, etc.
var envVars viper.Viper

const (
	configgood    uint8 = 0
	configbad     uint8 = 1
	noconfigfound uint8 = 2
)

var state uint8 = configgood

// setup is the private helper that configures viper. Called once by init().
func setup(dir string) *viper.Viper {

	var v = viper.New()
	v.SetConfigName("local")
	v.SetConfigType("env")
	v.AddConfigPath(dir)
	// Viper is lazy, do the read and parse of the config file
	var err = v.ReadInConfig()

	if err != nil {
		state = configbad
	}

	return v
}

func init() {

	// Possible config file locations: a developer checkout and /etc for
	// installed deployments.
	var locationSlice = [2]string{
		"shared_files",
		"/etc/canload",
	}

	if success, loc := findEnv(locationSlice[:]); success {
		envVars = *setup(loc)
	} else {
		state = noconfigfound
	}
}

// findEnv determines where the configuration file lives, if anywhere. Each
// environment keeps the file at a distinct path; if none is found the package
// defaults to plain environment variables.
func findEnv(location []string) (bool, string) {

	if _, err := os.Stat(filepath.Join(location[0], "local.env")); err == nil {
		return true, location[0]
	}

	if len(location) == 1 {
		return false, ""
	}

	return findEnv(location[1:])
}

// GetEnv retrieves the value stored in conf. If it does not exist, "" empty
// string is returned.
func GetEnv(key string) string {

	if state == configgood {

		var value = envVars.GetString(key)
		var b bool

		// Even if the config file loaded, if the key doesn't exist in conf,
		// try the environment. Copy it over to conf to prevent additional OS
		// calls; remember to delete both when UnsetEnv() is called.
		if value == "" {
			value, b = os.LookupEnv(key)

			if b {
				test := &testing.T{}
				var _ = SetEnv(test, key, value)
			}
		}

		return value
	}

	return os.Getenv(key)
}

// LookupEnv augments os.LookupEnv to look in the viper struct first.
func LookupEnv(key string) (string, bool) {

	if state == configgood {
		if value := envVars.Get(key); value != nil && value != "" {
			return value.(string), true
		}

		if v, exist := os.LookupEnv(key); exist {
			test := &testing.T{}
			var _ = SetEnv(test, key, v)
			return v, exist
		}

		return "", false
	}

	return os.LookupEnv(key)
}

// SetEnv adds key values into conf. This function should only be used either
// in this package itself or testing. The protect parameter is type *testing.T
// to ensure developers knowingly use it in the appropriate scope.
func SetEnv(protect *testing.T, key string, value string) error {

	var err error

	if state == configgood {
		envVars.Set(key, value)
	} else {
		err = os.Setenv(key, value)
	}

	return err
}

// UnsetEnv "unsets" a variable. Like SetEnv, this should only be used either
// in this package itself or testing.
func UnsetEnv(protect *testing.T, key string) error {
	var err error

	if state == configgood {
		envVars.Set(key, "")
	}

	// Unset the environment variable too, since GetEnv may have copied it in.
	err = os.Unsetenv(key)

	return err
}
