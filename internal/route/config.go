package route

import "github.com/curbz/routeplay/pkg/util"

// DefaultFixture is used when the configuration names no fixture.
const DefaultFixture = "data/route.json"

type config struct {
	Route struct {
		Fixture string `yaml:"fixture"`
	} `yaml:"route"`
}

// FixturePath reads the route section of the configuration file.
func FixturePath(cfgPath string) (string, error) {
	cfg, err := util.LoadConfig[config](cfgPath)
	if err != nil {
		return "", err
	}
	if cfg.Route.Fixture == "" {
		return DefaultFixture, nil
	}
	return cfg.Route.Fixture, nil
}
