package transform

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/c360studio/archspec/dsl"
	"github.com/c360studio/archspec/mir"
)

// lowerEnv lowers one environment. A datasource or server block that cannot
// be lowered is dropped with a warning; the environment itself is kept.
func (l *lowerer) lowerEnv(decl *dsl.EnvDecl) mir.Environment {
	env := mir.Environment{Name: decl.Name, Customs: make([]mir.CustomEnv, 0, len(decl.Customs))}

	if decl.Datasource != nil {
		ds, err := lowerDataSource(decl.Datasource)
		if err != nil {
			l.warn(WarnInvalidDataSource, decl.Name, decl.Datasource.Loc, "%v", err)
		} else {
			env.DataSource = ds
		}
	}

	if decl.Server != nil {
		port, err := strconv.Atoi(decl.Server.Port)
		if err != nil {
			l.warn(WarnInvalidServer, decl.Name, decl.Server.Loc, "server port %q is not a number", decl.Server.Port)
		} else {
			env.Server = &mir.Server{Port: port}
		}
	}

	for _, c := range decl.Customs {
		env.Customs = append(env.Customs, mir.CustomEnv{Name: c.Name, Attrs: lowerAttrs(c.Attributes)})
	}
	return env
}

// lowerDataSource builds a datasource from either a url or discrete
// driver/host/port fields. Credentials given as fields fill in what the url
// leaves out.
func lowerDataSource(decl *dsl.DatasourceDecl) (*mir.DataSource, error) {
	if decl.URL != "" {
		ds, err := parseDataSourceURL(decl.URL)
		if err != nil {
			return nil, err
		}
		if ds.Username == "" {
			ds.Username = decl.Username
		}
		if ds.Password == "" {
			ds.Password = decl.Password
		}
		if ds.Database == "" {
			ds.Database = decl.Database
		}
		return ds, nil
	}

	if decl.Driver == "" || decl.Host == "" {
		return nil, fmt.Errorf("%w: either url or both driver and host are required", ErrInvalidDataSource)
	}
	kind, ok := dataSourceKind(decl.Driver)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported driver %q", ErrInvalidDataSource, decl.Driver)
	}
	ds := &mir.DataSource{
		Kind:     kind,
		Host:     decl.Host,
		Port:     kind.DefaultPort(),
		Username: decl.Username,
		Password: decl.Password,
		Database: decl.Database,
	}
	if decl.Port != "" {
		port, err := strconv.Atoi(decl.Port)
		if err != nil {
			return nil, fmt.Errorf("%w: port %q is not a number", ErrInvalidDataSource, decl.Port)
		}
		ds.Port = port
	}
	return ds, nil
}

func parseDataSourceURL(raw string) (*mir.DataSource, error) {
	u, err := url.Parse(strings.TrimPrefix(raw, "jdbc:"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataSource, err)
	}

	var kind mir.DataSourceKind
	switch strings.ToLower(u.Scheme) {
	case "mysql":
		kind = mir.MySQL
	case "postgres", "postgresql":
		kind = mir.Postgres
	default:
		return nil, fmt.Errorf("%w: unsupported url scheme %q", ErrInvalidDataSource, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: url %q has no host", ErrInvalidDataSource, raw)
	}

	ds := &mir.DataSource{
		Kind:     kind,
		Host:     u.Hostname(),
		Port:     kind.DefaultPort(),
		Database: strings.TrimPrefix(u.Path, "/"),
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%w: port %q is not a number", ErrInvalidDataSource, p)
		}
		ds.Port = port
	}
	if u.User != nil {
		ds.Username = u.User.Username()
		ds.Password, _ = u.User.Password()
	}
	return ds, nil
}

func dataSourceKind(driver string) (mir.DataSourceKind, bool) {
	d := strings.ToLower(driver)
	switch {
	case strings.Contains(d, "mysql"):
		return mir.MySQL, true
	case strings.Contains(d, "postgres"):
		return mir.Postgres, true
	}
	return "", false
}
