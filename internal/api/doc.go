// Package api is the HTTP JSON surface over ingestion and analytics.
// Upload errors are normalized to the ingestion taxonomy before they cross
// this boundary — internal detail never reaches a client.
package api
