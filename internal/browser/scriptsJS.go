package browser

import (
	"encoding/json"
	"fmt"

	"github.com/josancamon19/web-environments/internal/entity"
)

// EventHookScript is injected before every document loads. It buffers UI
// events in window.__webenvEvents with a CSS-path selector per target; the
// recorder drains the buffer on a ticker so the page is never blocked.
const EventHookScript = `
() => {
	const w = window;
	if (w.__webenvHooked) return true;
	w.__webenvHooked = true;
	w.__webenvEvents = [];

	const cssPath = (el) => {
		try {
			if (!el || el.nodeType !== 1) return '';
			if (el.id) return '#' + CSS.escape(el.id);
			const parts = [];
			while (el && el.nodeType === 1 && parts.length < 6) {
				let part = el.tagName.toLowerCase();
				if (el.id) { parts.unshift(part + '#' + CSS.escape(el.id)); break; }
				const parent = el.parentElement;
				if (parent) {
					const siblings = Array.from(parent.children).filter(c => c.tagName === el.tagName);
					if (siblings.length > 1) part += ':nth-of-type(' + (siblings.indexOf(el) + 1) + ')';
				}
				parts.unshift(part);
				el = parent;
			}
			return parts.join(' > ');
		} catch (e) { return ''; }
	};

	const describe = (el) => {
		el = el && el.nodeType === 1 ? el : null;
		if (!el) return {};
		return {
			selector: cssPath(el),
			tag: (el.tagName || '').toLowerCase(),
			id: el.id || '',
			name: el.name || '',
			cls: (typeof el.className === 'string' ? el.className : ''),
			text: (el.innerText || '').trim().slice(0, 80),
		};
	};

	const push = (ev) => {
		if (w.__webenvEvents.length < 2048) w.__webenvEvents.push(ev);
	};

	document.addEventListener('click', (ev) => {
		push({ kind: 'click', target: describe(ev.target), x: ev.pageX, y: ev.pageY, ts: Date.now() });
	}, true);

	document.addEventListener('contextmenu', (ev) => {
		push({ kind: 'contextmenu', target: describe(ev.target), x: ev.pageX, y: ev.pageY, ts: Date.now() });
	}, true);

	document.addEventListener('keydown', (ev) => {
		push({ kind: 'keydown', target: describe(ev.target), key: ev.key, ts: Date.now() });
	}, true);

	document.addEventListener('input', (ev) => {
		const t = ev.target || {};
		push({ kind: 'input', target: describe(ev.target), value: ('value' in t ? String(t.value).slice(0, 1024) : ''), ts: Date.now() });
	}, true);

	window.addEventListener('scroll', () => {
		push({ kind: 'scroll', x: window.scrollX, y: window.scrollY, ts: Date.now() });
	}, true);

	return true;
}
`

// DrainEventsScript atomically swaps out the buffered events.
const DrainEventsScript = `
() => {
	const buf = Array.isArray(window.__webenvEvents) ? window.__webenvEvents : [];
	window.__webenvEvents = [];
	return buf;
}
`

// DOMSnapshotScript flattens the visible DOM into a node list capped at
// maxNodes elements; the caller serializes it to YAML.
const DOMSnapshotScript = `
(maxNodes) => {
	const all = Array.from(document.querySelectorAll('*'));
	const interactiveTags = new Set(['a', 'button', 'input', 'select', 'textarea', 'option', 'label']);
	const nodes = all.slice(0, maxNodes).map((el) => {
		const rect = el.getBoundingClientRect();
		return {
			tag: el.tagName.toLowerCase(),
			id: el.id || '',
			role: el.getAttribute('role') || '',
			text: (el.innerText || '').trim().slice(0, 120),
			value: ('value' in el ? String(el.value).slice(0, 120) : ''),
			interactive: interactiveTags.has(el.tagName.toLowerCase()) || el.hasAttribute('onclick'),
			visible: rect.width > 0 && rect.height > 0,
		};
	});
	return {
		url: location.href,
		title: document.title,
		viewport: { width: window.innerWidth, height: window.innerHeight },
		truncated: all.length > maxNodes,
		nodes: nodes,
	};
}
`

// StorageDumpScript serializes one web storage object.
const StorageDumpScript = `
(store) => {
	try {
		const src = store === 'session' ? sessionStorage : localStorage;
		const out = {};
		for (let i = 0; i < src.length; i++) {
			const key = src.key(i);
			out[key] = src.getItem(key);
		}
		return out;
	} catch (e) {
		return {};
	}
}
`

// StorageSeedScriptFor builds a bootstrap that seeds local and session
// storage from a snapshot. Registered via evaluate-on-new-document, it
// runs before any page script on every navigation and only touches the
// origins the snapshot recorded.
func StorageSeedScriptFor(origins []entity.OriginStorage) (string, error) {
	if len(origins) == 0 {
		return "", nil
	}
	data, err := json.Marshal(origins)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(storageSeedTemplate, data), nil
}

const storageSeedTemplate = `(() => {
	const origins = %s;
	for (const o of origins) {
		if (o.origin !== location.origin) continue;
		try {
			Object.entries(o.local_storage || {}).forEach(([k, v]) => localStorage.setItem(k, v));
		} catch (e) {}
		try {
			Object.entries(o.session_storage || {}).forEach(([k, v]) => sessionStorage.setItem(k, v));
		} catch (e) {}
	}
})();`
