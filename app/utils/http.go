package utils

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

func DebugResponse(resp *http.Response) {
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Error(err.Error())
	}
	slog.Debug(fmt.Sprintf("got response %s", string(b)))
}
