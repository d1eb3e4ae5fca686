package main

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/CAFxX/httpcompression"
	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	gojson "github.com/goccy/go-json"
	"github.com/julienschmidt/httprouter"

	"github.com/getsentry/opstractor/internal/opwriter"
	"github.com/getsentry/opstractor/internal/session"
)

var contentTypes = map[opwriter.Format]string{
	opwriter.FormatFlamegraph: "application/json",
	opwriter.FormatText:       "text/plain; charset=utf-8",
	opwriter.FormatBinary:     "application/octet-stream",
}

type status struct {
	session *session.Session
}

func newStatusHandler(s *session.Session) (http.Handler, error) {
	compress, err := httpcompression.DefaultAdapter()
	if err != nil {
		return nil, err
	}

	st := status{session: s}
	routes := []struct {
		method  string
		path    string
		handler http.HandlerFunc
	}{
		{http.MethodGet, "/health", st.getHealth},
		{http.MethodGet, "/stats", st.getStats},
		{http.MethodGet, "/snapshot/:format", st.getSnapshot},
	}

	router := httprouter.New()
	for _, route := range routes {
		router.Handler(route.method, route.path, compress(route.handler))
	}

	return sentryhttp.New(sentryhttp.Options{}).Handle(router), nil
}

func (st status) getHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (st status) getStats(w http.ResponseWriter, r *http.Request) {
	b, err := gojson.Marshal(st.session.Stats())
	if err != nil {
		captureException(r, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (st status) getSnapshot(w http.ResponseWriter, r *http.Request) {
	ps := httprouter.ParamsFromContext(r.Context())
	f, err := opwriter.ParseFormat(ps.ByName("format"))
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	var b bytes.Buffer
	err = st.session.WriteSnapshot(&b, f)
	if err != nil {
		if !errors.Is(err, opwriter.ErrHandleOverflow) {
			captureException(r, err)
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypes[f])
	w.WriteHeader(http.StatusOK)
	_, _ = b.WriteTo(w)
}

func captureException(r *http.Request, err error) {
	if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
		hub.CaptureException(err)
	}
}
