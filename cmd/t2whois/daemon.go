package main

import (
	"fmt"
	"net/http"

	"github.com/bgpfix/flowan/geo"
	"github.com/gin-gonic/gin"
)

// runDaemon serves GET /ip/:addr over HTTP, returning every field as JSON
// (spec §6 CLI "-D daemon mode", ambient component N).
func runDaemon(table *geo.Table, addr string, port int) error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/ip/:addr", func(c *gin.Context) {
		q := c.Param("addr")
		res := lookup(table, q)
		if !res.found {
			c.JSON(http.StatusNotFound, gin.H{"ip": q, "error": "no match"})
			return
		}

		body := gin.H{}
		for _, f := range allFields {
			body[f] = res.field(f)
		}
		c.JSON(http.StatusOK, body)
	})

	r.GET("/about", func(c *gin.Context) {
		c.String(http.StatusOK, aboutText)
	})

	listen := fmt.Sprintf("%s:%d", addr, port)
	return r.Run(listen)
}
