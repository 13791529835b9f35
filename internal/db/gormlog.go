package db

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// gormLogger routes gorm's LogMode output into zerolog.
type gormLogger struct {
	log zerolog.Logger
}

// Print receives ("sql", source, duration, sql, vars, rows) for statements
// and (level, source, message...) for everything else.
func (l gormLogger) Print(v ...interface{}) {
	if len(v) < 2 {
		return
	}

	if v[0] == "sql" && len(v) >= 6 {
		ev := l.log.Debug().Interface("source", v[1])
		if d, ok := v[2].(time.Duration); ok {
			ev = ev.Dur("duration", d)
		}
		ev.Str("sql", fmt.Sprint(v[3])).
			Interface("vars", v[4]).
			Interface("rows", v[5]).
			Msg("gorm query")
		return
	}

	l.log.Warn().Interface("source", v[1]).Msg(fmt.Sprint(v[2:]...))
}
