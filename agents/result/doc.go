/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

/*
Package result turns raw vision-model completions into structured payloads.

Models usually answer with bare JSON, but they frequently wrap it in a
markdown fence or pad it with blank lines. Normalize removes exactly those
artifacts and nothing else:

	```json
	{"is_evaluable": true, "reason": "clear diagram"}
	```

becomes

	{"is_evaluable": true, "reason": "clear diagram"}

ParseStructured decodes the normalized text into a generic JSON tree
(map[string]any) and Extract decodes it into a typed value. Both return a
*ParseError carrying the untouched completion when decoding fails:

	payload, err := result.ParseStructured(completion)
	var perr *result.ParseError
	if errors.As(err, &perr) {
		log.Printf("model said: %s", perr.Raw)
	}

There is no fallback that digs JSON out of surrounding prose. A completion
that is not a single JSON value after normalization is rejected so that
nothing downstream scores on a corrupted payload.
*/
package result
