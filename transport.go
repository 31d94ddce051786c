package ocspguard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

const ocspRequestContentType = "application/ocsp-request"

// MaxRequestRetryCount bounds the number of times a single responder URL's
// POST is retried after a transport-level (non-HTTP-status) error. It does
// not apply across URLs: firstSuccessful never retries a URL that already
// produced a definitive OCSP status.
var MaxRequestRetryCount = 2

var transportRandom = rand.New(rand.NewSource(1))

var transportRandMutex sync.Mutex

func transportJitter(n time.Duration) time.Duration {
	transportRandMutex.Lock()
	defer transportRandMutex.Unlock()
	if n <= 0 {
		return 0
	}
	return time.Duration(transportRandom.Int63n(int64(n)))
}

// Transport is the HTTP surface the request service needs. *http.Client
// satisfies it; tests substitute a recording or proxy-aware double.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// singleRequest POSTs body to url as an OCSPRequest and parses whatever
// comes back. A genuine transport error (connection refused, DNS failure)
// is retried a small bounded number of times with jittered backoff; a
// request that completes with a non-200 status is returned as an
// ErrRequestFailed without retry, since a responder that is up but
// unwilling to answer will not change its mind on the next attempt within
// the same lookup.
func singleRequest(ctx context.Context, url string, body []byte, transport Transport) (*Response, error) {
	if transport == nil {
		transport = &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	}

	var lastErr error
	sleep := 200 * time.Millisecond
	for attempt := 0; attempt <= MaxRequestRetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, newError(ErrRequestFailed, "single_request", ctx.Err())
			case <-time.After(transportJitter(sleep)):
			}
			sleep *= 2
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, newError(ErrRequestFailed, "single_request", err)
		}
		req.Header.Set("Content-Type", ocspRequestContentType)

		res, err := transport.Do(req)
		if err != nil {
			lastErr = err
			if errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, newError(ErrRequestFailed, "single_request", err)
			}
			continue
		}

		der, readErr := readAndClose(res.Body)
		if readErr != nil {
			return nil, newError(ErrRequestFailed, "single_request", readErr)
		}
		if res.StatusCode != http.StatusOK {
			return nil, newError(ErrRequestFailed, "single_request",
				fmt.Errorf("responder %s returned HTTP %d", url, res.StatusCode))
		}

		resp, parseErr := parseResponse(der)
		if parseErr != nil {
			return nil, parseErr
		}
		return resp, nil
	}
	return nil, newError(ErrRequestFailed, "single_request", lastErr)
}

func readAndClose(body io.ReadCloser) ([]byte, error) {
	defer body.Close()
	return io.ReadAll(body)
}

// firstSuccessful tries urls strictly in order, returning the first
// response whose OCSP status is successful. Non-successful responses and
// transport failures are folded into an aggregated ErrNoSuccessfulResponse
// if no URL yields a successful status; firstSuccessful never fans out
// concurrently, since that would let a slow early responder's answer
// overwrite a later one that already decided the lookup.
func firstSuccessful(ctx context.Context, urls []string, body []byte, transport Transport) (*Response, error) {
	if len(urls) == 0 {
		return nil, newError(ErrNoOCSPURLs, "first_successful", nil)
	}

	var failures []string
	for _, url := range urls {
		select {
		case <-ctx.Done():
			return nil, newError(ErrLookupTimedOut, "first_successful", ctx.Err())
		default:
		}

		resp, err := singleRequest(ctx, url, body, transport)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", url, err))
			continue
		}
		if resp.Successful() {
			return resp, nil
		}
		failures = append(failures, fmt.Sprintf("%s: status=%d", url, resp.Status))
	}
	return nil, newError(ErrNoSuccessfulResponse, "first_successful", errors.New(joinFailures(failures)))
}

func joinFailures(failures []string) string {
	out := ""
	for i, f := range failures {
		if i > 0 {
			out += "; "
		}
		out += f
	}
	if out == "" {
		out = "no responder URLs attempted"
	}
	return out
}
