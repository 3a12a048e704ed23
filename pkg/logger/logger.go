package logger

import (
	"go.uber.org/zap"
)

var log *zap.Logger

// Init inicializa el logger global con el nombre del servicio como campo fijo
func Init(service string) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"            // Logs estructurados en JSON
	cfg.EncoderConfig.TimeKey = "ts" // timestamp
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.CallerKey = "caller"

	l, err := cfg.Build(zap.Fields(zap.String("service", service)))
	if err != nil {
		panic(err)
	}
	log = l
}

// Logger retorna el logger estructurado
func Logger() *zap.Logger {
	return log
}
