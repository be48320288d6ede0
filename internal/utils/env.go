package utils

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
)

// LoadEnvFiles loads .env from the working directory into the process
// environment. A missing file is not an error so variables can be supplied externally.
func LoadEnvFiles() error {
	if err := godotenv.Load(".env"); err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return nil
		}
		return err
	}
	return nil
}
