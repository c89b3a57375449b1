// Copyright 2026 The Netqdisc Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

// Sample is a commented configuration with every knob at its default,
// except that the metrics server is enabled on a local address.
const Sample = `[log]
# Log level: debug, info or error.
level = "info"
# Log format: human or json.
format = "human"

[metrics]
# Address of the HTTP server exposing /metrics and /stats.
# Empty disables the server.
addr = "127.0.0.1:8000"

[sched]
# Number of flow queues, fixed for the scheduler lifetime. [1, 65536]
flows = 1024
# Total packet capacity.
limit = 10240
# Total memory capacity in bytes across all queued packets. At most 2 GiB.
memory_limit = 33554432
# Deficit round-robin byte credit per rotation. At least 256; defaults to
# the MTU.
quantum = 1514
mtu = 1514
# Packets shed from the fattest flow per overflow event.
drop_batch = 64
# CoDel sojourn target and estimation interval.
target = "5ms"
interval = "100ms"
# Sojourn threshold above which deliverable packets are CE-marked.
# "0s" disables the threshold.
ce_threshold = "0s"
# Drop instead of ECN-marking packets of ECN-capable flows.
disable_ecn = false
`
