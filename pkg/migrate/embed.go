package migrate

import (
	"embed"
	"io/fs"
)

const embeddedDir = "migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Embedded exposes the migrations shipped inside the binary.
func Embedded() fs.FS {
	return embedded
}
