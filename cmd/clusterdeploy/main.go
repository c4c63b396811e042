package main

import (
	"os"

	"github.com/ralt/clusterdeploy/internal/cli"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		DisableColors: !term.IsTerminal(int(os.Stdout.Fd())),
	})

	rootCmd := cli.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
