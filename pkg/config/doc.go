/*
Package config loads the agent's YAML configuration.

A single file controls the store backend, the remote API endpoint, drainer
pacing, reachability probing, logging, and the reconciler's metric kind
classification. Every field has a working default, so an empty or missing
file starts a usable agent as long as remote.baseURL is provided.

Example:

	dataDir: /var/lib/vitalsync
	storage: bolt
	listen: ":9464"
	remote:
	  baseURL: https://api.example.com
	  timeout: 30s
	drainer:
	  interval: 2s
	  batchSize: 10
	  minCallInterval: 500ms
	  maxAttempts: 8
	log:
	  level: info
	  json: true
	reconciler:
	  tieTolerance: 2s
	  classes:
	    water: current_state

The classes map overrides the built-in kind classification per deployment;
kinds not listed keep their defaults.
*/
package config
