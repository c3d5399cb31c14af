package mir

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
)

// Environment is a lowered `env` block.
type Environment struct {
	Name       string      `json:"name" yaml:"name"`
	DataSource *DataSource `json:"datasource,omitempty" yaml:"datasource,omitempty"`
	Server     *Server     `json:"server,omitempty" yaml:"server,omitempty"`
	Customs    []CustomEnv `json:"customs" yaml:"customs"`
}

// Custom returns the custom block with the given name, e.g. "kafka".
func (e Environment) Custom(name string) (CustomEnv, bool) {
	for _, c := range e.Customs {
		if c.Name == name {
			return c, true
		}
	}
	return CustomEnv{}, false
}

// DataSourceKind is the database flavour of a datasource.
type DataSourceKind string

const (
	MySQL    DataSourceKind = "MySql"
	Postgres DataSourceKind = "Postgres"
)

// DefaultPort returns the conventional port of the database flavour.
func (k DataSourceKind) DefaultPort() int {
	if k == Postgres {
		return 5432
	}
	return 3306
}

func (k DataSourceKind) scheme() string {
	if k == Postgres {
		return "postgresql"
	}
	return "mysql"
}

// DataSource is a database connection.
type DataSource struct {
	Kind     DataSourceKind `json:"kind" yaml:"kind"`
	Host     string         `json:"host" yaml:"host"`
	Port     int            `json:"port" yaml:"port"`
	Username string         `json:"username,omitempty" yaml:"username,omitempty"`
	Password string         `json:"password,omitempty" yaml:"password,omitempty"`
	Database string         `json:"database,omitempty" yaml:"database,omitempty"`
}

// URL renders the datasource as a connection URL.
func (d DataSource) URL() string {
	u := url.URL{
		Scheme: d.Kind.scheme(),
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   "/" + d.Database,
	}
	switch {
	case d.Username != "" && d.Password != "":
		u.User = url.UserPassword(d.Username, d.Password)
	case d.Username != "":
		u.User = url.User(d.Username)
	}
	return u.String()
}

func (d DataSource) String() string {
	return fmt.Sprintf("%s %s:%d/%s", d.Kind, d.Host, d.Port, d.Database)
}

// Server is the HTTP server settings of an environment.
type Server struct {
	Port int `json:"port" yaml:"port"`
}

// CustomEnv is an open-ended named block such as `kafka { ... }`. The core
// attaches no schema to it.
type CustomEnv struct {
	Name  string `json:"name" yaml:"name"`
	Attrs []Attr `json:"attrs" yaml:"attrs"`
}

// Get returns the value of the first attribute with the given key.
func (c CustomEnv) Get(key string) (string, bool) {
	for _, a := range c.Attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}
