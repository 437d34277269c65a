package logging

import (
	"log"
	"os"
)

var (
	disabled = false
	infoLog  = log.New(os.Stdout, "", log.LstdFlags)
	errorLog = log.New(os.Stderr, "", log.LstdFlags)
)

// Disable turns off all logging (used by tests and quiet CLI modes)
func Disable() {
	disabled = true
}

// Enable turns logging back on
func Enable() {
	disabled = false
}

// Info logs an info message
func Info(v ...any) {
	if !disabled {
		infoLog.Println(v...)
	}
}

// Infof logs a formatted info message
func Infof(format string, v ...any) {
	if !disabled {
		infoLog.Printf(format, v...)
	}
}

// Warnf logs a formatted warning message
func Warnf(format string, v ...any) {
	if !disabled {
		infoLog.Printf("WARN "+format, v...)
	}
}

// Error logs an error message
func Error(v ...any) {
	if !disabled {
		errorLog.Println(v...)
	}
}

// Errorf logs a formatted error message
func Errorf(format string, v ...any) {
	if !disabled {
		errorLog.Printf(format, v...)
	}
}

// Debugf logs a formatted debug message when RECOLLECT_DEBUG is set
func Debugf(format string, v ...any) {
	if !disabled && os.Getenv("RECOLLECT_DEBUG") != "" {
		infoLog.Printf("DEBUG "+format, v...)
	}
}
