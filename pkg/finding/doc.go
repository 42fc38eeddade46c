// Package finding provides the canonical severity and confidence
// vocabulary shared by every stage of the pipeline.
//
// External scanners each speak their own severity dialect (labels,
// CVSS-like numeric scores, or nothing at all). This package is the
// single place where those dialects are folded into the five canonical
// levels, so normalizers and notification hooks never compare raw
// source strings.
package finding
