// Package autoload loads a .env file from the working directory when imported.
// Variables already present in the environment win over the file.
package autoload

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"measurements-service/internal/infra"
)

var logger = infra.NewLogger(os.Stdout, "autoload")

func init() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Errorf(context.Background(), "dotenv autoload: %v", err)
	}
}
