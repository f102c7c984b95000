package ir

import "slices"

// TransferSpec describes one side of a reconciliation request.
// TableName is required only on the target (apply) side.
type TransferSpec struct {
	Host              string   `json:"host" yaml:"host"`
	Port              int      `json:"port" yaml:"port"`
	EngineType        string   `json:"engine_type" yaml:"engine_type"`
	AccessMode        string   `json:"access_mode,omitempty" yaml:"access_mode,omitempty"`
	Database          string   `json:"database" yaml:"database"`
	User              string   `json:"user,omitempty" yaml:"user,omitempty"`
	Password          string   `json:"password,omitempty" yaml:"password,omitempty"`
	Query             string   `json:"query" yaml:"query"`
	Columns           []string `json:"columns" yaml:"columns"`
	PrimaryKeyColumns []string `json:"primary_key_columns" yaml:"primary_key_columns"`
	TableName         string   `json:"table_name,omitempty" yaml:"table_name,omitempty"`
}

// TransferRequest pairs the source and target sides of one reconciliation.
type TransferRequest struct {
	Source         TransferSpec `json:"source" yaml:"source"`
	Target         TransferSpec `json:"target" yaml:"target"`
	CronExpression string       `json:"cron_expression,omitempty" yaml:"cron_expression,omitempty"`
}

// ConnectionName returns the name the graph registers this side's connection under.
// Format: "<host>_<database>".
func (s TransferSpec) ConnectionName() string {
	return s.Host + "_" + s.Database
}

// Connection converts the spec's connection fields into a graph connection.
func (s TransferSpec) Connection() Connection {
	mode := s.AccessMode
	if mode == "" {
		mode = DefaultAccessMode
	}
	return Connection{
		Name:       s.ConnectionName(),
		EngineType: s.EngineType,
		AccessMode: mode,
		Host:       s.Host,
		Port:       s.Port,
		Database:   s.Database,
		User:       s.User,
		Password:   s.Password,
	}
}

// ValueColumns returns the columns that are not part of the primary key,
// in declaration order.
func (s TransferSpec) ValueColumns() []string {
	values := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		if !slices.Contains(s.PrimaryKeyColumns, c) {
			values = append(values, c)
		}
	}
	return values
}
