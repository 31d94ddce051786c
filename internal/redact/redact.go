// Package redact masks the destination hostnames and certificate serial
// numbers that would otherwise sit in plaintext inside this library's log
// lines — the same leak this whole module exists to prevent at the network
// layer, so logging must not recreate it at the log-sink layer.
package redact

import "regexp"

const (
	urlHostPattern     = `(?i)(https?://)([a-zA-Z0-9.-]+)`
	hostKVPattern      = `(?i)(host|hostname|responder|url)([\'"\s:=]+)([a-zA-Z0-9.-]{3,})`
	serialPattern      = `(?i)(serial|serial_number|serialnumber)([\'"\s:=]+)([0-9a-fA-Fx]{4,})`
	fingerprintPattern = `(?i)(fingerprint|fp)([\'"\s:=]+)([0-9a-fA-F]{8,})`
)

var (
	urlHostRegexp     = regexp.MustCompile(urlHostPattern)
	hostKVRegexp      = regexp.MustCompile(hostKVPattern)
	serialRegexp      = regexp.MustCompile(serialPattern)
	fingerprintRegexp = regexp.MustCompile(fingerprintPattern)
)

type masker string

func (m masker) maskURLHost() masker {
	return masker(urlHostRegexp.ReplaceAllString(string(m), "${1}****"))
}

func (m masker) maskHostKV() masker {
	return masker(hostKVRegexp.ReplaceAllString(string(m), "$1${2}****"))
}

func (m masker) maskSerial() masker {
	return masker(serialRegexp.ReplaceAllString(string(m), "$1${2}****"))
}

func (m masker) maskFingerprint() masker {
	return masker(fingerprintRegexp.ReplaceAllString(string(m), "$1${2}****"))
}

// Line masks hostnames, serial numbers, and fingerprints found in text,
// returning a copy safe to write to a shared log sink.
func Line(text string) string {
	m := masker(text)
	return string(m.maskURLHost().maskHostKV().maskSerial().maskFingerprint())
}
