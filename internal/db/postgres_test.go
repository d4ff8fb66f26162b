package db

import (
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "with password",
			cfg:  Config{Host: "db", Port: 5432, User: "clinic", Password: "s3cret", Database: "clinic", SSLMode: "require"},
			want: "host=db port=5432 user=clinic password=s3cret dbname=clinic sslmode=require",
		},
		{
			name: "without password",
			cfg:  Config{Host: "localhost", Port: 5433, User: "postgres", Database: "reminders", SSLMode: "disable"},
			want: "host=localhost port=5433 user=postgres dbname=reminders sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.DSN())

			parsed, err := pgxpool.ParseConfig(tt.cfg.DSN())
			require.NoError(t, err)
			assert.Equal(t, tt.cfg.Host, parsed.ConnConfig.Host)
			assert.Equal(t, uint16(tt.cfg.Port), parsed.ConnConfig.Port)
			assert.Equal(t, tt.cfg.Database, parsed.ConnConfig.Database)
		})
	}
}
