package main

const configTemplate = `# {{ index .Help "base-url" }}
base-url: {{ .BaseURL }}
# {{ index .Help "endpoint" }}
endpoint: {{ .Endpoint }}
# {{ index .Help "persona" }}
persona: hrbp
# {{ index .Help "raw" }}
raw: false
# {{ index .Help "quiet" }}
quiet: false
# {{ index .Help "word-wrap" }}
word-wrap: {{ .WordWrap }}
# {{ index .Help "theme" }}
theme: auto
# {{ index .Help "status-text" }}
status-text: Analyzing
# {{ index .Help "timeout" }}
# timeout: 5m
# {{ index .Help "http-proxy" }}
# http-proxy: http://proxy.example.com:3128
# {{ index .Help "verbose" }}
verbose: false
`
