package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// CLI flags
	configFilenameFlag string
	portFlag           int
	originFlag         string
	hostFlag           string
	dirFlag            string
	rootFlag           string
	providerFlag       string
	markerFlag         string
	debugFlag          bool
	watchFlag          bool
	verbosityTraceFlag bool
	logFilenameFlag    string

	// this is set by goreleaser
	version string
)

func init() {
	flag.StringVar(&configFilenameFlag, "config", "", "Path to config file")
	flag.StringVar(&originFlag, "origin", "", "Origin URL to proxy to (overrides config)")
	flag.StringVar(&hostFlag, "host", "", "Hostname of origin")
	flag.StringVar(&dirFlag, "dir", "", "Directory to serve instead of an origin (overrides config)")
	flag.StringVar(&rootFlag, "root", "", "Root URL or path that URLs are resolved against (default: origin or dir)")
	flag.IntVar(&portFlag, "port", 0, "Port to listen on (default 8080)")
	flag.StringVar(&providerFlag, "provider", "", "Storage provider to use: memory or sqlite")
	flag.StringVar(&markerFlag, "marker", "", "Comment to append to transformed documents")
	flag.BoolVar(&debugFlag, "debug", false, "Add the outcome header to responses")
	flag.BoolVar(&watchFlag, "watch", false, "Purge documents when files in dir change")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")

	if version == "" {
		version = "DEV"
	}
}

// applyFlags overrides config values with the flags that were given.
func applyFlags(config *Config) {
	if originFlag != "" {
		config.Origin = originFlag
		config.Dir = ""
	}
	if dirFlag != "" {
		config.Dir = dirFlag
		config.Origin = ""
	}
	if hostFlag != "" {
		config.Host = hostFlag
	}
	if rootFlag != "" {
		config.Root = rootFlag
	}
	if portFlag != 0 {
		config.Port = portFlag
	}
	if providerFlag != "" {
		config.Provider = providerFlag
	}
	if markerFlag != "" {
		config.Transform.Marker = markerFlag
	}
	if debugFlag {
		config.Debug = true
	}
	if watchFlag {
		config.Files.Watch = true
	}
	if logFilenameFlag != "" {
		config.LogFile = logFilenameFlag
	}
}

func main() {
	flag.Parse()

	var config Config
	if configFilenameFlag != "" {
		var err error
		if config, err = getConfig(configFilenameFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Could not read config: %v\n", err)
			os.Exit(1)
		}
	}
	applyFlags(&config)

	// set log level
	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if config.LogFile != "" {
		if logFileOutput, err := os.OpenFile(config.LogFile, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("version", version).Logger()

	if err := config.complete(); err != nil {
		flag.Usage()
		log.Fatal().Err(err).Msg("Invalid config")
	}

	s, err := newServer(config, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not start")
	}
	defer s.Close()

	log.Info().Msgf("Serving port %v from %s%s (root %s, provider %s)", config.Port, config.Origin, config.Dir, config.Root, config.Provider)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", config.Port), s); err != nil {
		log.Error().Err(err).Msg("Server stopped")
	}
}
