package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/writtenrealms/writtenrealms/server"
)

// Configuration is flags first, then WR_* environment variables, then
// an optional config.yaml in the data directory.
func loadConfig() server.Config {
	defaults := server.DefaultConfig()

	sshAddr := flag.String("ssh", defaults.SSHAddr, "Where to listen for SSH connections.")
	wsAddr := flag.String("ws", defaults.WSAddr, "Where to listen for WebSocket connections.")
	dir := flag.String("dir", defaults.Dir, "Where to keep the database, keys and logs.")
	heartbeat := flag.Duration("heartbeat", time.Second, "Spacing between deferred trigger script segments.")
	flag.Parse()

	v := viper.New()
	v.SetDefault("ssh", *sshAddr)
	v.SetDefault("ws", *wsAddr)
	v.SetDefault("dir", *dir)
	v.SetDefault("heartbeat", *heartbeat)
	v.SetEnvPrefix("wr")
	v.AutomaticEnv()
	v.SetConfigName("config")
	v.AddConfigPath(*dir)
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			log.Fatal(err)
		}
	}

	return server.Config{
		SSHAddr:   v.GetString("ssh"),
		WSAddr:    v.GetString("ws"),
		Dir:       v.GetString("dir"),
		Heartbeat: v.GetDuration("heartbeat"),
	}
}

func main() {
	config := loadConfig()

	if err := os.MkdirAll(config.Dir, 0700); err != nil {
		log.Fatal(err)
	}
	log.SetOutput(&lumberjack.Logger{
		Filename:   filepath.Join(config.Dir, "server.log"),
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
	})

	srv, err := server.New(config)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("listening on ssh %s, ws %s", config.SSHAddr, config.WSAddr)
	log.Fatal(srv.Start(context.Background()))
}
