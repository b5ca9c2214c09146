package db

import (
	"log"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/airu-app/supportchat/internal/chat"
)

// Connect opens the transcript database and migrates the schema.
// MySQL DSNs (user:pass@tcp(...)/db) use the mysql driver; anything else
// is treated as a sqlite path, which keeps local dev dependency-free.
func Connect(dsn string) *gorm.DB {
	var dialector gorm.Dialector
	if strings.Contains(dsn, "@tcp(") {
		dialector = mysql.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		log.Fatalf("db open: %v", err)
	}

	if err := gdb.AutoMigrate(&chat.Session{}, &chat.Message{}, &chat.Job{}); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	return gdb
}
