package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jlrickert/repodex/pkg/dex"
	"github.com/jlrickert/repodex/pkg/repository"
)

func renderUserError(err error, deps *Deps) string {
	if err == nil {
		return ""
	}
	if isDebugLogLevel(deps) {
		return err.Error()
	}

	var conflict *repository.ConflictError
	if errors.As(err, &conflict) {
		return fmt.Sprintf("a resource with %s %q already has this version", conflict.Field, conflict.Value)
	}
	var notFound *repository.NotFoundError
	if errors.As(err, &notFound) {
		return fmt.Sprintf("%s is not indexed", notFound.URI)
	}
	var idLen *dex.IdentifierLengthError
	if errors.As(err, &idLen) {
		return fmt.Sprintf("identifiers must be %d bytes long, got %d", idLen.Want, idLen.Got)
	}
	if errors.Is(err, repository.ErrCorruptJournal) {
		return err.Error() + " (rerun with --discard-journal, then run check and reindex)"
	}

	return err.Error()
}

func isDebugLogLevel(deps *Deps) bool {
	if deps == nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(deps.LogLevel), "debug")
}
