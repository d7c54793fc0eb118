package config

import (
	"io"
	"log"
	"os"
	"strings"

	jww "github.com/spf13/jwalterweatherman"
)

// InitLog sets jww thresholds from a level name and optionally redirects
// output to a file.
func InitLog(level, logPath string) {
	if logPath != "" && logPath != "-" {
		logOutput, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			jww.ERROR.Printf("[CONFIG] Cannot open log file %s: %v", logPath, err)
		} else {
			jww.SetStdoutOutput(io.Discard)
			jww.SetLogOutput(logOutput)
		}
	}

	threshold := ParseLogLevel(level)
	jww.SetStdoutThreshold(threshold)
	jww.SetLogThreshold(threshold)
	if threshold <= jww.LevelDebug {
		jww.SetFlags(log.LstdFlags | log.Lmicroseconds)
	}
	jww.INFO.Printf("[CONFIG] Log level set to: %s", strings.ToUpper(level))
}

func ParseLogLevel(level string) jww.Threshold {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return jww.LevelTrace
	case "debug":
		return jww.LevelDebug
	case "warn", "warning":
		return jww.LevelWarn
	case "error":
		return jww.LevelError
	default:
		return jww.LevelInfo
	}
}
