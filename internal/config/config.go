package config

import (
	"fmt"
	"log"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/davecgh/go-spew/spew"
)

// ConfigStruct is the glue for all bootstrap configuration sections.
// Everything that may change at runtime lives in the flag registry instead.
type ConfigStruct struct {
	Common   Common   `toml:"common"`
	Database Database `toml:"database"`
}

// Common is the data required for all services
type Common struct {
	LogDir    string `toml:"log_dir"`
	Debug     bool   `toml:"debug"`
	Listen    string `toml:"listen"`
	FlagsPath string `toml:"flags_path"`
}

// Database is the data required to establish a PostgreSQL connection
type Database struct {
	DBname   string `toml:"dbname"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	SSLmode  string `toml:"sslmode"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

// DSN returns a connection string with all information from the struct
func (d Database) DSN() string {
	return fmt.Sprintf("sslmode=%s host=%s port=%d user=%s password=%s dbname=%s", d.SSLmode, d.Host, d.Port, d.User, d.Password, d.DBname)
}

// C represents the loaded config
var C ConfigStruct

func Load(path string) error {
	md, err := toml.DecodeFile(path, &C)
	if len(md.Undecoded()) > 0 {
		log.Println("NOTE: There were a few undecoded keys")
		spew.Dump(md.Undecoded())
	}
	return err
}

// Save rewrites the config file so hand-edited files get formatted and
// newly added fields show up with their defaults.
func Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := toml.NewEncoder(file)
	if err := enc.Encode(C); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
