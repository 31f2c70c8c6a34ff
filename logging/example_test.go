package logging_test

import (
	"github.com/grovetools/packreload/logging"
	"github.com/sirupsen/logrus"
)

func ExampleNewLogger() {
	log := logging.NewLogger("orchestrator")

	log.Info("Bootstrap complete")

	log.WithFields(logrus.Fields{
		"package": "file/example",
		"exit":    1,
	}).Warn("Compile failed")
}
