/*
Package config loads and validates Bollard's operator-provided YAML
configuration.

A single Config value is loaded per invocation and passed explicitly into
component constructors; there is no ambient configuration state. Example:

	server:
	  public_ip: 203.0.113.10
	nginx:
	  conf_dir: /etc/nginx/conf.d
	certbot:
	  email: ops@example.com
	  webroot: /var/www/letsencrypt
	notify:
	  api_url: https://api.mailprovider.example/v3/mail/send
	  api_token: "..."
	  to: [ops@example.com]
	apps:
	  - name: shop
	    type: rails
	    repo_url: https://git.example.com/shop.git
	    domain: shop.example.com
	    alt_domains: [internal.shop.example.com]
	    scale: 2
	    base_port: 3000
	    health_path: /healthz

Defaults are applied before validation; validation rejects anything that
would misbehave at deploy time (unknown app types, out-of-range scale,
missing ports or domains).
*/
package config
