// Package settings keeps application preferences as JSON values keyed by
// name. Values are stored in clear and are readable while the vault is
// locked, so nothing sensitive belongs here.
package settings
