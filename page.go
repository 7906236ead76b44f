package main

// pageHTML is the live dashboard: status line, boat position, course line,
// wind barb and the ordered vessel table, refreshed over the websocket with
// server-sent events as a fallback.
const pageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Flyer</title>
<style>
  body { font-family: system-ui, sans-serif; margin: 0; background: #f4f6f8; color: #1d2733; }
  header { background: #0b3d5c; color: #fff; padding: 12px 20px; }
  header h1 { margin: 0; font-size: 20px; }
  #status { margin-top: 4px; font-size: 14px; opacity: .9; }
  main { display: flex; flex-wrap: wrap; gap: 20px; padding: 20px; }
  section { background: #fff; border-radius: 6px; box-shadow: 0 1px 3px rgba(0,0,0,.1); padding: 16px; }
  table { border-collapse: collapse; min-width: 420px; }
  td, th { text-align: left; padding: 4px 10px; border-bottom: 1px solid #e3e7eb; font-size: 14px; }
  th { font-weight: 600; }
  td.value { font-variant-numeric: tabular-nums; text-align: right; }
  td.time { color: #6b7785; font-size: 12px; }
  #nav dt { font-weight: 600; margin-top: 6px; }
  #nav dd { margin: 0; font-variant-numeric: tabular-nums; }
  #conn { font-size: 12px; color: #6b7785; }
</style>
</head>
<body>
<header>
  <h1>Flyer</h1>
  <div id="status">Connecting&hellip;</div>
</header>
<main>
  <section>
    <table>
      <thead><tr><th>Quantity</th><th>Value</th><th>Last update</th></tr></thead>
      <tbody id="rows"></tbody>
    </table>
  </section>
  <section>
    <dl id="nav">
      <dt>Position</dt><dd id="pos">&ndash;</dd>
      <dt>Course line end</dt><dd id="cog">&ndash;</dd>
      <dt>Wind</dt><dd id="wind">&ndash;</dd>
    </dl>
    <div id="barb"></div>
    <p><a href="/api/table.csv">Download table</a></p>
    <div id="conn"></div>
  </section>
</main>
<script>
function fmt(p) {
  return p.lat.toFixed(5) + ", " + p.lng.toFixed(5);
}

function render(d) {
  document.getElementById("status").textContent = d.status || "";
  var body = document.getElementById("rows");
  body.innerHTML = "";
  (d.rows || []).forEach(function (r) {
    var tr = document.createElement("tr");
    [[r.label, ""], [r.value, "value"], [r.last_update, "time"]].forEach(function (c) {
      var td = document.createElement("td");
      td.textContent = c[0];
      if (c[1]) td.className = c[1];
      tr.appendChild(td);
    });
    body.appendChild(tr);
  });
  document.getElementById("pos").textContent = d.position ? fmt(d.position) : "–";
  document.getElementById("cog").textContent = d.cog
    ? fmt(d.cog.to) + " (" + Math.round(d.cog.distance_m) + " m)" : "–";
  var barb = document.getElementById("barb");
  if (d.wind) {
    document.getElementById("wind").textContent =
      d.wind.speed_knots.toFixed(1) + " kn from " + Math.round(d.wind.direction_deg) + "°" +
      (d.wind.derived ? " (derived)" : "");
    barb.innerHTML = '<img alt="wind barb" src="/api/windbarb.svg?speed=' +
      d.wind.speed_knots + '&direction=' + d.wind.direction_deg + '">';
  } else {
    document.getElementById("wind").textContent = "–";
    barb.innerHTML = "";
  }
}

function onFrame(text) {
  var msg = JSON.parse(text);
  if (msg.type === "dashboard") render(msg.data);
}

function sse() {
  document.getElementById("conn").textContent = "event stream";
  var es = new EventSource("/api/stream");
  es.onmessage = function (e) { onFrame(e.data); };
}

function connect(attempt) {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + "/ws");
  var opened = false;
  ws.onopen = function () {
    opened = true;
    document.getElementById("conn").textContent = "live";
  };
  ws.onmessage = function (e) { onFrame(e.data); };
  ws.onclose = function () {
    if (!opened && attempt >= 2) { sse(); return; }
    document.getElementById("conn").textContent = "reconnecting…";
    setTimeout(function () { connect(opened ? 0 : attempt + 1); }, 2000);
  };
}

connect(0);
</script>
</body>
</html>
`
