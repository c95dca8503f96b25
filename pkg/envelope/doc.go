// Copyright (c) 2025 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package envelope models SOAP envelopes as etree documents.

The security layers do not care which SOAP version carries a message, so
the envelope is kept as a plain element tree with accessors for the parts
WS-Security processing touches: the Header (created on demand, always
before the Body), the Body, and the wsse:Security header block. Lookups
tolerate any namespace prefix by falling back to local-name matching.

	env, err := envelope.Parse(data)
	if err != nil {
		log.Fatal(err)
	}
	body := env.Body()
*/
package envelope
