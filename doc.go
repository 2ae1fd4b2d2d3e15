/*
 * Copyright (c) 2021-2022 UNNG Lab.
 */

// Package pgsource owns a configured PostgreSQL connection pool and hands out
// leased connections from it.
//
// Prefer constructing a *Source with New and passing it to the code that needs
// connections:
//
//	config, err := pgsource.LoadConfig("pool.toml")
//	...
//	src, err := pgsource.New(ctx, config, pgsource.WithLogger(logger))
//	...
//	defer src.Close()
//
//	err = src.WithConn(ctx, func(c *pgsource.Conn) error {
//		_, err := c.Exec(ctx, "delete from sessions where expires_at < now()")
//		return err
//	})
//
// Init, GetConnection, GetSource and Shutdown manage a single process-wide
// Source for code that cannot take one as a dependency.
//
// Credentials are never part of the endpoint. They come from the config file,
// PGSOURCE_USERNAME and PGSOURCE_PASSWORD, a pg service entry or the passfile.
package pgsource
